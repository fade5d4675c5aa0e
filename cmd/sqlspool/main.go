package main

import "github.com/spoolhouse/sqlspool/internal/cli"

func main() {
	cli.Execute()
}
