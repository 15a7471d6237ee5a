package main

import "kissan-connect-backend/cmd"

func main() {
	cmd.Run()
}
