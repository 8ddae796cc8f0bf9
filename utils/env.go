/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"os"
	"strconv"
	"time"
)

// envDefault parses the variable key, returning def when it is unset or
// does not parse.
func envDefault[T any](key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if parsed, err := parse(v); err == nil {
		return parsed
	}
	return def
}

func EnvDefaultString(key string, def string) string {
	return envDefault(key, def, func(v string) (string, error) { return v, nil })
}

func EnvDefaultBool(key string, def bool) bool {
	return envDefault(key, def, strconv.ParseBool)
}

func EnvDefaultInt(key string, def int) int {
	return envDefault(key, def, strconv.Atoi)
}

// EnvDefaultDuration reads key as a Go duration ("90s") or a number of seconds.
func EnvDefaultDuration(key string, def time.Duration) time.Duration {
	return envDefault(key, def, func(v string) (time.Duration, error) {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return time.ParseDuration(v)
	})
}
