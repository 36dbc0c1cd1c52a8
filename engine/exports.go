package engine

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// exports holds the resolved qjs_* functions of the shim.
type exports struct {
	alloc   api.Function
	dealloc api.Function

	newRuntime             api.Function
	freeRuntime            api.Function
	newContext             api.Function
	freeContext            api.Function
	setMemoryLimit         api.Function
	runGC                  api.Function
	executePendingJob      api.Function
	enableModuleLoader     api.Function
	enableRejectionTracker api.Function

	eval api.Function

	newUndefined api.Function
	newNull      api.Function
	newBool      api.Function
	newInt32     api.Function
	newFloat64   api.Function
	newStringLen api.Function
	newObject    api.Function
	newArray     api.Function
	newDate      api.Function
	newBigInt64  api.Function

	setProperty         api.Function
	setPropertyUint32   api.Function
	getProperty         api.Function
	getPropertyUint32   api.Function
	getGlobalObject     api.Function
	getOwnPropertyNames api.Function

	getTag     api.Function
	isFunction api.Function
	isArray    api.Function
	isDate     api.Function
	isFloat64  api.Function

	toBool       api.Function
	toInt32      api.Function
	toFloat64    api.Function
	toBigInt64   api.Function
	toCStringLen api.Function
	freeCString  api.Function

	call            api.Function
	dupValue        api.Function
	freeValue       api.Function
	getException    api.Function
	throw           api.Function
	newHostFunction api.Function

	newPromiseCapability api.Function

	newClassID     api.Function
	newClass       api.Function
	newObjectClass api.Function
	setOpaque      api.Function
	getOpaque      api.Function
	getClassID     api.Function

	refCount api.Function
}

func resolveExports(mod api.Module) (*exports, error) {
	var missing []string
	get := func(name string) api.Function {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			missing = append(missing, name)
		}
		return fn
	}

	e := &exports{
		alloc:   get("qjs_alloc"),
		dealloc: get("qjs_free"),

		newRuntime:             get("qjs_new_runtime"),
		freeRuntime:            get("qjs_free_runtime"),
		newContext:             get("qjs_new_context"),
		freeContext:            get("qjs_free_context"),
		setMemoryLimit:         get("qjs_set_memory_limit"),
		runGC:                  get("qjs_run_gc"),
		executePendingJob:      get("qjs_execute_pending_job"),
		enableModuleLoader:     get("qjs_enable_module_loader"),
		enableRejectionTracker: get("qjs_enable_rejection_tracker"),

		eval: get("qjs_eval"),

		newUndefined: get("qjs_new_undefined"),
		newNull:      get("qjs_new_null"),
		newBool:      get("qjs_new_bool"),
		newInt32:     get("qjs_new_int32"),
		newFloat64:   get("qjs_new_float64"),
		newStringLen: get("qjs_new_string_len"),
		newObject:    get("qjs_new_object"),
		newArray:     get("qjs_new_array"),
		newDate:      get("qjs_new_date"),
		newBigInt64:  get("qjs_new_big_int64"),

		setProperty:         get("qjs_set_property"),
		setPropertyUint32:   get("qjs_set_property_uint32"),
		getProperty:         get("qjs_get_property"),
		getPropertyUint32:   get("qjs_get_property_uint32"),
		getGlobalObject:     get("qjs_get_global_object"),
		getOwnPropertyNames: get("qjs_get_own_property_names"),

		getTag:     get("qjs_get_tag"),
		isFunction: get("qjs_is_function"),
		isArray:    get("qjs_is_array"),
		isDate:     get("qjs_is_date"),
		isFloat64:  get("qjs_is_float64"),

		toBool:       get("qjs_to_bool"),
		toInt32:      get("qjs_to_int32"),
		toFloat64:    get("qjs_to_float64"),
		toBigInt64:   get("qjs_to_big_int64"),
		toCStringLen: get("qjs_to_cstring_len"),
		freeCString:  get("qjs_free_cstring"),

		call:            get("qjs_call"),
		dupValue:        get("qjs_dup_value"),
		freeValue:       get("qjs_free_value"),
		getException:    get("qjs_get_exception"),
		throw:           get("qjs_throw"),
		newHostFunction: get("qjs_new_host_function"),

		newPromiseCapability: get("qjs_new_promise_capability"),

		newClassID:     get("qjs_new_class_id"),
		newClass:       get("qjs_new_class"),
		newObjectClass: get("qjs_new_object_class"),
		setOpaque:      get("qjs_set_opaque"),
		getOpaque:      get("qjs_get_opaque"),
		getClassID:     get("qjs_get_class_id"),

		refCount: get("qjs_ref_count"),
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("shim is missing exports: %s", strings.Join(missing, ", "))
	}
	return e, nil
}

// u32 packs a signed 32-bit value into a wazero call argument.
func u32(v int32) uint64 { return uint64(uint32(v)) }

// i32 unpacks a wazero result into a signed 32-bit value.
func i32(v uint64) int32 { return int32(uint32(v)) }
