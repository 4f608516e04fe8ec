// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// knownCredentialKey checks the key against the managed set. Unknown
// keys are allowed with a warning; the store itself does not care.
func knownCredentialKey(key string) bool {
	for _, k := range KnownCredentials {
		if k == key {
			return true
		}
	}
	return false
}

// runCredentialSet stores a credential. The value is read from stdin so
// it never lands in shell history or the process argument list.
//
//	echo -n "sk-ant-..." | autodoc credential set claude_api_key
func runCredentialSet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	key := args[0]
	if !knownCredentialKey(key) {
		a.logger.Warn("storing an unrecognized credential key", "key", key)
	}

	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && value == "" {
		return fmt.Errorf("failed to read the value from stdin: %w", err)
	}
	value = strings.TrimRight(value, "\r\n")
	if value == "" {
		return fmt.Errorf("refusing to store an empty value for %s", key)
	}

	if err := a.credentials.Store(cmd.Context(), key, value); err != nil {
		return err
	}
	fmt.Printf("stored %s in %s\n", key, a.credentials.Backend())
	return nil
}

// runCredentialGet prints a credential value to stdout, the way
// secret-tool lookup does. The value is written to stdout only; it is
// never logged.
func runCredentialGet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	value, err := a.credentials.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

// runCredentialDelete removes a credential. Deleting a key that was
// never stored is fine.
func runCredentialDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	key := args[0]
	if err := a.credentials.Delete(cmd.Context(), key); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", key)
	return nil
}

// runCredentialStatus lists the known keys and whether each is set.
func runCredentialStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	fmt.Printf("backend: %s\n", a.credentials.Backend())
	for _, key := range KnownCredentials {
		state := "not set"
		if a.credentials.Has(cmd.Context(), key) {
			state = "set"
		}
		fmt.Printf("  %-16s %s\n", key, state)
	}
	return nil
}
