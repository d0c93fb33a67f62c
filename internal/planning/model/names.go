package model

import "strings"

// Variable names are "|"-delimited tuples so the result package can parse
// them back into domain keys without a separate side-channel index.
const sep = "|"

func varProd(plantID, period string) string {
	return strings.Join([]string{"prod", plantID, period}, sep)
}

func varInv(plantID, period string) string {
	return strings.Join([]string{"inv", plantID, period}, sep)
}

func varShip(originID, destinationID, mode, period string) string {
	return strings.Join([]string{"ship", originID, destinationID, mode, period}, sep)
}

func varTrips(originID, destinationID, mode, period string) string {
	return strings.Join([]string{"trips", originID, destinationID, mode, period}, sep)
}

func varUseMode(originID, destinationID, mode, period string) string {
	return strings.Join([]string{"use", originID, destinationID, mode, period}, sep)
}

func varSlack(customerID, period string) string {
	return strings.Join([]string{"slack", customerID, period}, sep)
}

// ParsedVar is a variable name split back into its kind and key components.
type ParsedVar struct {
	Kind  string
	Parts []string
}

// ParseVarName splits a "|"-delimited variable name produced by this
// package back into its kind tag and key components.
func ParseVarName(name string) ParsedVar {
	parts := strings.Split(name, sep)
	if len(parts) == 0 {
		return ParsedVar{}
	}
	return ParsedVar{Kind: parts[0], Parts: parts[1:]}
}
