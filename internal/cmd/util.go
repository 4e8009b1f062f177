package cmd

import (
	"os"
	"strconv"
	"strings"
)

const (
	ENV_PREFIX = "CRUMBWAY_"
)

func findEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(ENV_PREFIX + key)
	if ok {
		return value, true
	}

	value, ok = os.LookupEnv(key)
	if ok {
		return value, true
	}

	return "", false
}

func getEnvString(key string, defaultValue string) string {
	value, ok := findEnv(key)
	if !ok {
		return defaultValue
	}

	return value
}

func getEnvStrings(key string, defaultValue []string) []string {
	value, ok := findEnv(key)
	if !ok {
		return defaultValue
	}

	var values []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			values = append(values, item)
		}
	}

	return values
}

func getEnvInt(key string, defaultValue int) int {
	value, ok := findEnv(key)
	if !ok {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, ok := findEnv(key)
	if !ok {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}
