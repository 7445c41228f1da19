package model

import (
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"
)

// Namer is implemented by record types that want a logical name other than
// their Go type name.
type Namer interface {
	ModelName() string
}

// CollectionName maps a type name to its collection: snake_case, then a
// trailing "s" unless the name already ends in one.
//
//	User          -> users
//	BlogPost      -> blog_posts
//	user-profile  -> user_profiles
//	Address       -> address
func CollectionName(name string) string {
	snake := strcase.ToSnake(strings.TrimSpace(name))
	if snake == "" {
		snake = "document"
	}
	if !strings.HasSuffix(snake, "s") {
		snake += "s"
	}
	return snake
}

// NameOf returns the Go type name of T without package path or type
// arguments.
func NameOf[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "document"
	}
	return name
}
