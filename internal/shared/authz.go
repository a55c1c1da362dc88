package shared

// Permissions checked by the RBAC middleware.
const (
	PermShopView = "shops.view"
	PermShopEdit = "shops.edit"

	PermCustomerView   = "customers.view"
	PermCustomerEdit   = "customers.edit"
	PermCustomerDelete = "customers.delete"

	PermProductView   = "products.view"
	PermProductEdit   = "products.edit"
	PermProductDelete = "products.delete"

	PermQuotationView    = "quotations.view"
	PermQuotationEdit    = "quotations.edit"
	PermQuotationApprove = "quotations.approve"
	PermQuotationConvert = "quotations.convert"

	PermInvoiceView   = "invoices.view"
	PermInvoiceEdit   = "invoices.edit"
	PermInvoiceDelete = "invoices.delete"
	PermPaymentRecord = "payments.record"

	PermStatementView = "statements.view"

	PermSettingsView = "settings.view"
	PermSettingsEdit = "settings.edit"
)

// AllScopes lists every permission known to the application.
func AllScopes() []string {
	return []string{
		PermShopView, PermShopEdit,
		PermCustomerView, PermCustomerEdit, PermCustomerDelete,
		PermProductView, PermProductEdit, PermProductDelete,
		PermQuotationView, PermQuotationEdit, PermQuotationApprove, PermQuotationConvert,
		PermInvoiceView, PermInvoiceEdit, PermInvoiceDelete, PermPaymentRecord,
		PermStatementView,
		PermSettingsView, PermSettingsEdit,
	}
}

// StaffScopes lists the permissions granted to non-admin users.
func StaffScopes() []string {
	return []string{
		PermShopView,
		PermCustomerView, PermCustomerEdit,
		PermProductView, PermProductEdit,
		PermQuotationView, PermQuotationEdit, PermQuotationConvert,
		PermInvoiceView, PermInvoiceEdit, PermPaymentRecord,
		PermStatementView,
		PermSettingsView,
	}
}
