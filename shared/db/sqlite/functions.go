package sqlite

import (
	"database/sql/driver"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
)

// UnicodeLower is a SQL function that lowercases with Go's Unicode rules.
// The built-in lower() only folds ASCII.
const UnicodeLower = "unicode_lower"

func init() {
	err := msqlite.RegisterDeterministicScalarFunction(UnicodeLower, 1,
		func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return nil, fmt.Errorf("%s: unsupported argument type %T", UnicodeLower, v)
			}
		})
	if err != nil {
		panic(fmt.Sprintf("failed to register %s: %v", UnicodeLower, err))
	}
}
