package models

// Catalog ordering keys accepted by the listing endpoints.
const (
	OrderByUploadDate = "uploadDate"
	OrderByDownloads  = "downloads"
	OrderByName       = "name"
	OrderByLastCommit = "lastCommit"
)

// ValidOrderBy reports whether key names a supported catalog ordering.
func ValidOrderBy(key string) bool {
	switch key {
	case OrderByUploadDate, OrderByDownloads, OrderByName, OrderByLastCommit:
		return true
	}
	return false
}

// ExtensionFilter narrows and orders a catalog listing. Zero values mean
// "no constraint"; Featured is a pointer so false can be asked for
// explicitly.
type ExtensionFilter struct {
	Name     string
	State    string
	Featured *bool
	OwnerID  int64
	OrderBy  string
	Page     int
	PerPage  int
}

// Offset converts the 1-indexed page to a row offset.
func (f ExtensionFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PerPage
}
