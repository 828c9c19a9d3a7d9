// Command capstripe serves, inspects and exercises the capacity-factor
// stripe visualization engine.
package main

import "github.com/MeKo-Tech/capstripeviz/internal/cmd"

func main() {
	cmd.Execute()
}
