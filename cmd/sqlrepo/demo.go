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

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomoncle/sqlrepo/repository"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Create, update, list and fetch customers",
	Long: `Run a short scenario against TblCustomers:

  1. create a customer with a random name, an email and today's birth date
  2. update the name and birth date of customer --id
  3. list the ids of all customers
  4. fetch customer --id and print its name

The table must exist; see 'sqlrepo schema init'.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

var (
	demoID    int64
	demoEmail string
)

func init() {
	demoCmd.Flags().Int64Var(&demoID, "id", 8, "customer id to update and fetch")
	demoCmd.Flags().StringVar(&demoEmail, "email", "may@mail.com", "email of the created customer")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	pool, _, err := openPool(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	repo, err := repository.NewRepository[Customer, int64](pool)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	today := time.Now().Truncate(24 * time.Hour)
	name := uuid.NewString()
	created := &Customer{Email: &demoEmail, Name: &name, BirthDate: &today}
	if _, err := repo.Create(ctx, created); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	slog.Info("customer created", "id", created.ID, "name", name)

	newName := "Ugo"
	birthDate := today.AddDate(0, 0, -10)
	updated, err := repo.Update(ctx, demoID, &Customer{Name: &newName, BirthDate: &birthDate})
	if err != nil {
		return fmt.Errorf("update customer %d: %w", demoID, err)
	}
	slog.Info("customer update", "id", demoID, "updated", updated)

	customers, err := repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	_, _ = fmt.Fprintln(out, "All Customers:")
	for _, c := range customers {
		_, _ = fmt.Fprintln(out, c.ID)
	}

	found, err := repo.FindByID(ctx, demoID)
	if err != nil {
		return fmt.Errorf("find customer %d: %w", demoID, err)
	}
	if found == nil || found.Name == nil {
		_, _ = fmt.Fprintf(out, "Find By Id: customer %d not found\n", demoID)
	} else {
		_, _ = fmt.Fprintf(out, "Find By Id: %s\n", *found.Name)
	}

	stats := pool.Stats()
	slog.Debug("pool stats",
		"opened", stats.Opened,
		"reused", stats.Reused,
		"closed", stats.Closed,
		"queries", stats.Queries,
	)
	return nil
}
