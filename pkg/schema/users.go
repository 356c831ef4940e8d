package schema

import "github.com/adfharrison1/go-crm/pkg/domain"

// Index names of the users table.
const (
	IndexCompanyJobTitle = "company-job_title-index"
	IndexJobTitleCompany = "job_title-company-index"
)

// UsersTable is the table name used by the external stores.
const UsersTable = "users"

// Users returns the registry for the users table.
func Users() *Registry {
	return NewRegistry(
		[]Field{
			{Name: domain.FieldID, Type: FieldTypeInteger, Sortable: true},
			{Name: domain.FieldFirstName, Type: FieldTypeString, Sortable: true},
			{Name: domain.FieldLastName, Type: FieldTypeString, Sortable: true},
			{Name: domain.FieldEmail, Type: FieldTypeString, Sortable: true},
			{Name: domain.FieldCompany, Type: FieldTypeString, Filterable: true, Sortable: true},
			{Name: domain.FieldJobTitle, Type: FieldTypeString, Filterable: true, Sortable: true},
			{Name: domain.FieldCity, Type: FieldTypeString, Filterable: true, Sortable: true},
			{Name: domain.FieldState, Type: FieldTypeString, Filterable: true, Sortable: true},
			{Name: domain.FieldRole, Type: FieldTypeString, Filterable: true},
			{Name: domain.FieldEventsHosted, Type: FieldTypeInteger, Filterable: true, Sortable: true},
			{Name: domain.FieldEventsAttended, Type: FieldTypeInteger, Filterable: true, Sortable: true},
		},
		[]IndexDescriptor{
			{Name: IndexCompanyJobTitle, PartitionField: domain.FieldCompany, SortField: domain.FieldJobTitle},
			{Name: IndexJobTitleCompany, PartitionField: domain.FieldJobTitle, SortField: domain.FieldCompany},
		},
	)
}
