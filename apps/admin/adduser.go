package main

import (
	"context"
	"fmt"

	"github.com/atlportal/backend/core"
	"github.com/atlportal/backend/core/user"
)

// addUser updates or creates the user.User owning email.
func (cli *commandLine) addUser(email, firstName, lastName string) error {
	idt := user.Identity{Email: email}
	if firstName = core.CleanString(firstName); firstName != "" {
		idt.FirstName = &firstName
	}
	if lastName = core.CleanString(lastName); lastName != "" {
		idt.LastName = &lastName
	}
	if err := idt.Validate(cli.validate); err != nil {
		return err
	}

	usr, created, err := cli.usrSvc.Upsert(context.Background(), idt)
	if err != nil {
		return err
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Printf("user %s %s (%s)\n", usr.Email, verb, usr.ID)
	return nil
}
