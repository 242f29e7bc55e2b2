package script

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// payloadTable renders a payload as a Lua table keyed by its JSON field
// names.
func payloadTable(L *lua.LState, payload any) (lua.LValue, error) {
	if payload == nil {
		return L.NewTable(), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return lua.LNil, fmt.Errorf("encode payload: %w", err)
	}
	return jsonValue(L, gjson.ParseBytes(b)), nil
}

func jsonValue(L *lua.LState, r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.True:
		return lua.LTrue
	case gjson.False:
		return lua.LFalse
	case gjson.Number:
		return lua.LNumber(r.Float())
	case gjson.String:
		return lua.LString(r.Str)
	case gjson.JSON:
		tbl := L.NewTable()
		if r.IsArray() {
			for _, item := range r.Array() {
				tbl.Append(jsonValue(L, item))
			}
			return tbl
		}
		r.ForEach(func(key, value gjson.Result) bool {
			tbl.RawSetString(key.Str, jsonValue(L, value))
			return true
		})
		return tbl
	default:
		return lua.LNil
	}
}
