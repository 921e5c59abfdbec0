package main

import "github.com/mekongagency/payment-hub/cmd"

func main() {
	cmd.Execute()
}
