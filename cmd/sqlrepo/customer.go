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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomoncle/sqlrepo/database"
	"github.com/tomoncle/sqlrepo/mapping"
	"github.com/tomoncle/sqlrepo/repository"
	"github.com/tomoncle/sqlrepo/types"
)

// Customer is a row of TblCustomers. Nil fields are left out of INSERT and
// UPDATE statements.
type Customer struct {
	mapping.BaseModel `db:"table:TblCustomers"`

	ID            int64      `db:"CustomerId,pk" json:"id"`
	Name          *string    `db:"CustomerName" json:"name,omitempty"`
	PostalAddress *string    `db:"PostalAddress" json:"postal_address,omitempty"`
	Email         *string    `db:"Email" json:"email,omitempty"`
	BirthDate     *time.Time `db:"BirthDate" json:"birth_date,omitempty"`
}

const dateLayout = "2006-01-02"

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Create, read, update and delete customers",
}

var customerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Insert a customer",
	Long: `Insert a customer. Only the flags given are written.

Examples:
  sqlrepo customer create --name Ugo --email ugo@x.com
  sqlrepo customer create --name Ada --birth-date 1815-12-10`,
	Args: cobra.NoArgs,
	RunE: runCustomerCreate,
}

var customerGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one customer as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerGet,
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print customers as JSON",
	Long: `Print customers as JSON. Without --page every row is printed.

Examples:
  sqlrepo customer list
  sqlrepo customer list --page 2 --size 20`,
	Args: cobra.NoArgs,
	RunE: runCustomerList,
}

var customerUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update the given fields of a customer",
	Long: `Update a customer. Fields without a flag keep their stored value.

Examples:
  sqlrepo customer update 8 --name Ugo`,
	Args: cobra.ExactArgs(1),
	RunE: runCustomerUpdate,
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a customer",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomerDelete,
}

var (
	listPage int
	listSize int
)

func init() {
	for _, cmd := range []*cobra.Command{customerCreateCmd, customerUpdateCmd} {
		cmd.Flags().String("name", "", "customer name")
		cmd.Flags().String("address", "", "postal address")
		cmd.Flags().String("email", "", "email address")
		cmd.Flags().String("birth-date", "", "birth date (YYYY-MM-DD)")
	}
	customerListCmd.Flags().IntVar(&listPage, "page", 0, "page number, starting at 1")
	customerListCmd.Flags().IntVar(&listSize, "size", types.DefaultPageSize, "page size")

	customerCmd.AddCommand(customerCreateCmd, customerGetCmd, customerListCmd, customerUpdateCmd, customerDeleteCmd)
	rootCmd.AddCommand(customerCmd)
}

// customerRepository opens the pool and binds a customer repository to it.
func customerRepository(cmd *cobra.Command) (repository.Repository[Customer, int64], *database.Pool, error) {
	pool, _, err := openPool(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewRepository[Customer, int64](pool)
	if err != nil {
		_ = pool.Close()
		return nil, nil, err
	}
	return repo, pool, nil
}

// customerFromFlags builds a sparse customer holding only the flags that
// were set.
func customerFromFlags(cmd *cobra.Command) (*Customer, error) {
	c := &Customer{}
	flags := cmd.Flags()
	if flags.Changed("name") {
		v, _ := flags.GetString("name")
		c.Name = &v
	}
	if flags.Changed("address") {
		v, _ := flags.GetString("address")
		c.PostalAddress = &v
	}
	if flags.Changed("email") {
		v, _ := flags.GetString("email")
		c.Email = &v
	}
	if flags.Changed("birth-date") {
		v, _ := flags.GetString("birth-date")
		tm, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("invalid birth date %q: %w", v, err)
		}
		c.BirthDate = &tm
	}
	return c, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid customer id %q", s)
	}
	return id, nil
}

func runCustomerCreate(cmd *cobra.Command, _ []string) error {
	customer, err := customerFromFlags(cmd)
	if err != nil {
		return err
	}
	repo, pool, err := customerRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ok, err := repo.Create(cmd.Context(), customer)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	slog.Info("customer created", "created", ok, "id", customer.ID)
	return nil
}

func runCustomerGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	repo, pool, err := customerRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	customer, err := repo.FindByID(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("get customer %d: %w", id, err)
	}
	if customer == nil {
		return fmt.Errorf("customer %d not found", id)
	}
	return printJSON(cmd.OutOrStdout(), customer)
}

func runCustomerList(cmd *cobra.Command, _ []string) error {
	repo, pool, err := customerRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	if listPage > 0 {
		page, err := repo.Page(cmd.Context(), types.NewPageRequest(listPage, listSize))
		if err != nil {
			return fmt.Errorf("list customers: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), page)
	}

	customers, err := repo.FindAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), customers)
}

func runCustomerUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	customer, err := customerFromFlags(cmd)
	if err != nil {
		return err
	}
	repo, pool, err := customerRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ok, err := repo.Update(cmd.Context(), id, customer)
	if err != nil {
		return fmt.Errorf("update customer %d: %w", id, err)
	}
	if !ok {
		slog.Warn("not found", "id", id)
		return nil
	}
	slog.Info("customer updated", "id", id)
	return nil
}

func runCustomerDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	repo, pool, err := customerRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = pool.Close() }()

	ok, err := repo.Delete(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if !ok {
		slog.Warn("not found", "id", id)
		return nil
	}
	slog.Info("customer deleted", "id", id)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
