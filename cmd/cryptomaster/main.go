package main

import (
	"github.com/Nik1855/CryptoMasterPro/internal/cli"
)

func main() {
	cli.Execute()
}
