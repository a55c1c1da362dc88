package rbac

import "github.com/odyssey-erp/quotedesk/internal/shared"

// Permission represents an atomic capability.
type Permission struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserRecord is the slice of a user row needed for authorisation.
type UserRecord struct {
	ID       int64
	Role     shared.Role
	IsActive bool
}

var descriptions = map[string]string{
	shared.PermShopView:         "View shops",
	shared.PermShopEdit:         "Create and edit shops",
	shared.PermCustomerView:     "View and search customers",
	shared.PermCustomerEdit:     "Create and edit customers",
	shared.PermCustomerDelete:   "Delete customers",
	shared.PermProductView:      "View and search products",
	shared.PermProductEdit:      "Create and edit products",
	shared.PermProductDelete:    "Delete products",
	shared.PermQuotationView:    "View quotations",
	shared.PermQuotationEdit:    "Draft, edit and submit quotations",
	shared.PermQuotationApprove: "Approve or reject quotations",
	shared.PermQuotationConvert: "Convert approved quotations into invoices",
	shared.PermInvoiceView:      "View invoices",
	shared.PermInvoiceEdit:      "Mark invoices as sent",
	shared.PermInvoiceDelete:    "Delete unsent invoices",
	shared.PermPaymentRecord:    "Record payments",
	shared.PermStatementView:    "View and send customer statements",
	shared.PermSettingsView:     "View settings",
	shared.PermSettingsEdit:     "Change settings",
}

// Catalog lists every permission with its description.
func Catalog() []Permission {
	scopes := shared.AllScopes()
	perms := make([]Permission, 0, len(scopes))
	for _, name := range scopes {
		perms = append(perms, Permission{Name: name, Description: descriptions[name]})
	}
	return perms
}

// PermissionsFor returns the permissions granted to a role.
func PermissionsFor(role shared.Role) []string {
	switch role {
	case shared.RoleAdmin:
		return shared.AllScopes()
	case shared.RoleStaff:
		return shared.StaffScopes()
	default:
		return nil
	}
}
