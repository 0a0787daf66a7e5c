package main

import (
	"log"
	"os"

	"github.com/dmitrijs2005/lakeadmin/internal/tokencli"
)

func main() {

	if err := tokencli.Run(os.Args[1:], os.Getenv, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}

}
