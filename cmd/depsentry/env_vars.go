// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/depsentry/cmd/depsentry/config"
)

// githubToken reads the API token from the environment variable named in
// the config and seals it in an enclave. The plaintext never reaches the
// config file or the logs; only its presence is reported. Returns nil
// when the variable is unset, in which case the forge fetcher runs
// unauthenticated at the lower rate limit.
func githubToken() *memguard.Enclave {
	envName := config.Global.GitHub.TokenEnv
	if envName == "" {
		envName = "GITHUB_TOKEN"
	}
	token := os.Getenv(envName)
	log.Debug("github token lookup", "env", envName, "present", token != "")
	if token == "" {
		return nil
	}
	return memguard.NewEnclave([]byte(token))
}
