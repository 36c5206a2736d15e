package main

import (
	_ "github.com/joho/godotenv/autoload"
	"github.com/starshine-sys/archiver/cmd"
	"github.com/starshine-sys/archiver/common"
)

func main() {
	err := cmd.Run()
	if err != nil {
		common.Log.Fatal(err)
	}
}
