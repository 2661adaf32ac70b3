// Package validation はリクエストDTOの入力値検証を提供する。
// フィールド名はJSONタグ名で報告する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// embeddedSegment はJSONタグを持たない埋め込み構造体のフィールド名。
// JSON上はフィールドが展開されるため、パスからは取り除く。
const embeddedSegment = "~"

// textTag は保存可能な文字列（有効なUTF-8でNULを含まない）を要求する検証タグ。
const textTag = "utf8text"

var (
	instance *validator.Validate
	once     sync.Once
)

// FieldError は検証に失敗したフィールドを表す。
type FieldError struct {
	Field string // JSONパス（例: choice1.schoolName）
	Rule  string // 失敗した検証タグ
}

// Error は失敗した全フィールドをまとめた検証エラー。
type Error struct {
	Fields []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Rule)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func validate() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if fld.Anonymous && tag == "" {
				return embeddedSegment
			}
			name := strings.SplitN(tag, ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		// 登録に失敗するのはタグ名が不正な場合だけ
		if err := instance.RegisterValidation(textTag, func(fl validator.FieldLevel) bool {
			return IsText(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	})
	return instance
}

// IsText はsが有効なUTF-8で、NUL文字を含まないかを返す。
// PostgreSQLのTEXT/JSONB列はどちらも受け付けない。
func IsText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// Struct はvalidateタグに従って構造体を検証する。
// 失敗したフィールドがある場合は*Errorを返す。
func Struct(v any) error {
	err := validate().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
		})
	}
	return out
}

// fieldPath は先頭の構造体名と埋め込み構造体を除いたJSONパスを返す。
func fieldPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	kept := segments[:0]
	for _, s := range segments {
		if s != "" && s != embeddedSegment {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ".")
}
