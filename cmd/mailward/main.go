// mailward is a policy-enforced mailbox gateway for AI agents.
package main

import "github.com/mailward/mailward/internal/cli"

func main() {
	cli.Execute()
}
