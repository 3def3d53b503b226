package sheets

import "errors"

var (
	ErrEmptyImport = errors.New("import contains no riders")
	ErrBadWorkbook = errors.New("unreadable workbook")
)
