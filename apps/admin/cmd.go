package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/atlportal/backend/core/location"
	"github.com/atlportal/backend/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB // nil unless the backend is postgres
	usrSvc   *user.Service
	locRepo  location.Repository
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status...)")
	fmt.Println("  adduser -email EMAIL -first FIRST_NAME [-last LAST_NAME] - create or update a user")
	fmt.Println("  addcity -country COUNTRY -state STATE -name CITY - register a city")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name. Required for new users.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")

	addCityCmd := flag.NewFlagSet("addcity", flag.ContinueOnError)
	addCityCountry := addCityCmd.String("country", "", "The country of the city.")
	addCityState := addCityCmd.String("state", "", "The state of the city.")
	addCityName := addCityCmd.String("name", "", "The name of the city.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserFirst, *addUserLast)
	case "addcity":
		if err := addCityCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCityCountry == "" || *addCityState == "" || *addCityName == "" {
			addCityCmd.Usage()
			return errHelp
		}
		return cli.addCity(*addCityCountry, *addCityState, *addCityName)
	default:
		cli.printUsage()
		return errHelp
	}
}
