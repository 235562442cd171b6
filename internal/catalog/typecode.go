package catalog

// TypeCode is a standard numeric SQL type code (X/Open CLI values, the same
// numbering JDBC and ODBC use). Drivers translate their vendor's type names
// into these codes; the engine maps the codes onto schema.DataType.
type TypeCode int

const (
	TypeLongNVarChar  TypeCode = -16
	TypeNChar         TypeCode = -15
	TypeNVarChar      TypeCode = -9
	TypeBit           TypeCode = -7
	TypeTinyInt       TypeCode = -6
	TypeBigInt        TypeCode = -5
	TypeLongVarBinary TypeCode = -4
	TypeVarBinary     TypeCode = -3
	TypeBinary        TypeCode = -2
	TypeLongVarChar   TypeCode = -1
	TypeChar          TypeCode = 1
	TypeNumeric       TypeCode = 2
	TypeDecimal       TypeCode = 3
	TypeInteger       TypeCode = 4
	TypeSmallInt      TypeCode = 5
	TypeFloat         TypeCode = 6
	TypeReal          TypeCode = 7
	TypeDouble        TypeCode = 8
	TypeVarChar       TypeCode = 12
	TypeBoolean       TypeCode = 16
	TypeDate          TypeCode = 91
	TypeTime          TypeCode = 92
	TypeTimestamp     TypeCode = 93
	TypeOther         TypeCode = 1111
	TypeBlob          TypeCode = 2004
	TypeClob          TypeCode = 2005
	TypeNClob         TypeCode = 2011
)
