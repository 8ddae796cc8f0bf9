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

// Package todostore stores Todo items through a generic Bun repository.
//
// Setup loads the configuration and opens the global database; the Todos
// service then runs repository operations against it:
//
//	if err := todostore.Setup("configs/todostore.yaml"); err != nil {
//		log.Fatal(err)
//	}
//	defer todostore.Shutdown()
//	todo, err := todostore.Todos.CreateFromFields(ctx, repository.Fields{"title": "buy milk"})
package todostore

import (
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/todostore/config"
	"github.com/tomoncle/todostore/database"
	"github.com/tomoncle/todostore/utils"
)

// Setup loads configuration from path (empty for defaults and environment
// only) and initializes the global database.
func Setup(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return SetupWithConfig(cfg)
}

// SetupWithConfig initializes the global database from an already loaded configuration.
func SetupWithConfig(cfg *config.Config) error {
	cfg.ApplyLogging()
	if logger := utils.GetLogger("TODOSTORE"); logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.Debugf("configuration loaded\n%s", cfg.Dump())
	}
	_, err := database.InitDB(&cfg.Config)
	return err
}

// Shutdown closes the global database.
func Shutdown() error {
	return database.CloseDB()
}
