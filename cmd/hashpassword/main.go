// Command hashpassword prints the bcrypt hash of a staff password so an
// account row can be seeded by hand.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mehmetcc/campaign-auth-service/internal/account"
)

func main() {
	password := flag.String("password", "", "staff password to hash")
	flag.Parse()

	if *password == "" {
		fmt.Fprintln(os.Stderr, "usage: hashpassword -password <password>")
		os.Exit(2)
	}

	hash, err := account.HashPassword(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "password rejected: %v\n", err)
		os.Exit(1)
	}
	if !account.VerifyPassword(hash, *password) {
		fmt.Fprintln(os.Stderr, "hash verification failed")
		os.Exit(1)
	}
	fmt.Println(hash)
}
