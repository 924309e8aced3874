// Package mapping turns tagged Go structs into table metadata, builds the
// single-table CRUD statements for them and maps result rows back into
// struct values.
//
// A record type names its table and columns with db tags:
//
//	type Customer struct {
//		mapping.BaseModel `db:"table:TblCustomers"`
//
//		CustomerId   int64      `db:"CustomerId,pk"`
//		CustomerName *string    `db:"CustomerName"`
//		BirthDate    *time.Time `db:"BirthDate"`
//	}
//
// Untagged exported fields map to a column of the same name. Metadata is
// computed once per type and cached for the life of the process.
package mapping
