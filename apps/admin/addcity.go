package main

import (
	"context"
	"fmt"

	"github.com/atlportal/backend/core"
)

func (cli *commandLine) addCity(country, state, name string) error {
	city, err := cli.locRepo.UpsertCity(
		context.Background(),
		core.CleanString(country),
		core.CleanString(state),
		core.CleanString(name),
	)
	if err != nil {
		return err
	}
	fmt.Printf("city %s, %s, %s (%d)\n", city.Name, city.State, city.Country, city.ID)
	return nil
}
