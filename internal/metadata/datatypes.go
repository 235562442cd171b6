package metadata

import (
	"fmt"
	"strings"

	"github.com/schemata-db/schemata/internal/catalog"
	"github.com/schemata-db/schemata/internal/errs"
	"github.com/schemata-db/schemata/internal/schema"
)

// DataTypeFromCode maps a catalog type code onto the normalized data type.
// The mapping is total over the supported codes; anything else fails with an
// unknown-type error naming both the code and the vendor's type name. There
// is deliberately no default mapping: an unrecognized type in a production
// schema is a defect to surface, not something to guess a width for.
func DataTypeFromCode(code catalog.TypeCode, typeName string) (schema.DataType, error) {
	switch code {
	case catalog.TypeTinyInt, catalog.TypeSmallInt, catalog.TypeInteger:
		return schema.DataTypeInteger, nil
	case catalog.TypeBigInt:
		return schema.DataTypeBigInteger, nil
	case catalog.TypeFloat, catalog.TypeReal, catalog.TypeDouble, catalog.TypeNumeric, catalog.TypeDecimal:
		return schema.DataTypeDecimal, nil
	case catalog.TypeChar, catalog.TypeVarChar, catalog.TypeLongVarChar, catalog.TypeNVarChar, catalog.TypeLongNVarChar:
		return schema.DataTypeString, nil
	case catalog.TypeBoolean, catalog.TypeBit:
		return schema.DataTypeBoolean, nil
	case catalog.TypeDate:
		return schema.DataTypeDate, nil
	case catalog.TypeBlob, catalog.TypeBinary, catalog.TypeVarBinary, catalog.TypeLongVarBinary:
		return schema.DataTypeBlob, nil
	case catalog.TypeClob, catalog.TypeNClob:
		return schema.DataTypeClob, nil
	default:
		return 0, errs.New(errs.ErrKindUnknownType,
			fmt.Sprintf("unknown SQL data type [%s] (%d)", typeName, code))
	}
}

// DefaultValue returns the recorded default for a column: "0" for a column
// named "version" in any casing, the empty string for everything else.
// Database-level defaults are not modeled; the optimistic-locking version
// counter is the one exception.
func DefaultValue(columnName string) string {
	if strings.EqualFold(columnName, "version") {
		return "0"
	}
	return ""
}
