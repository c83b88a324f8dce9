package action

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
)

// FieldType names the payload value types the router can enforce.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeUUID    FieldType = "uuid"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateBearerHeader checks the shape of an Authorization header value.
// It is a format check only; cryptographic verification belongs to the
// authentication layer that produces UserContext.
func ValidateBearerHeader(header string) Result {
	if strings.TrimSpace(header) == "" {
		return fail(CodeMissingToken, "authorization token required")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fail(CodeInvalidToken, "authorization header must use the Bearer scheme")
	}
	if strings.TrimSpace(header[len(prefix):]) == "" {
		return fail(CodeInvalidToken, "bearer token is empty")
	}
	return ok()
}

// ValidateUserContext checks that an authenticated caller is complete.
// Check order is fixed for deterministic error reporting: user, yacht, role.
func ValidateUserContext(user *UserContext) Result {
	if user == nil {
		return fail(CodeInvalidToken, "no authenticated user context")
	}
	if strings.TrimSpace(user.UserID) == "" {
		return fail(CodeInvalidToken, "User ID missing from authenticated context")
	}
	if strings.TrimSpace(user.YachtID) == "" {
		return fail(CodeYachtNotFound, "no yacht associated with user")
	}
	if strings.TrimSpace(user.Role) == "" {
		return fail(CodePermissionDenied, "no role assigned to user")
	}
	return ok()
}

// ValidateYachtIsolation enforces the tenant boundary: the request may only
// target the yacht the caller authenticated into. A mismatch is a hard
// failure, never silently corrected.
func ValidateYachtIsolation(actionCtx Context, user UserContext) Result {
	if strings.TrimSpace(actionCtx.YachtID) == "" {
		return fail(CodeYachtNotFound, "yacht_id required in action context")
	}
	if actionCtx.YachtID != user.YachtID {
		return failField(CodeYachtMismatch,
			fmt.Sprintf("action targets yacht %s but caller is scoped to yacht %s", actionCtx.YachtID, user.YachtID),
			"yacht_id", nil)
	}
	return okWith(map[string]any{"yacht_id": actionCtx.YachtID})
}

// ValidateRolePermission checks exact, case-sensitive membership of the
// caller's role in the action's allowed set. Failure details carry the
// caller's role and the full allowed list for auditing.
func ValidateRolePermission(user UserContext, allowedRoles []string, actionName string) Result {
	for _, role := range allowedRoles {
		if user.Role == role {
			return ok()
		}
	}
	return failField(CodePermissionDenied,
		fmt.Sprintf("role %s cannot execute %s", user.Role, actionName),
		"", map[string]any{
			"role":          user.Role,
			"allowed_roles": allowedRoles,
		})
}

// ValidateRequiredFields checks that every required payload field is present,
// non-null and, for strings, non-blank after trimming. All violations are
// collected so a caller can fix them in one round trip.
func ValidateRequiredFields(payload Payload, required []string, actionName string) Result {
	var missing []string
	for _, name := range required {
		v, present := payload[name]
		if !present || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return failField(CodeMissingField,
			fmt.Sprintf("%s requires fields: %s", actionName, strings.Join(missing, ", ")),
			"", map[string]any{"missing_fields": missing})
	}
	return ok()
}

// ValidateFieldType checks a present value against an expected type. Absent
// values pass: presence is the required-fields validator's concern.
func ValidateFieldType(value any, fieldName string, expected FieldType) Result {
	if value == nil {
		return ok()
	}
	valid := false
	switch expected {
	case TypeString:
		_, valid = value.(string)
	case TypeNumber:
		n, isNum := toNumber(value)
		valid = isNum && !math.IsNaN(n)
	case TypeBoolean:
		_, valid = value.(bool)
	case TypeArray:
		valid = isSequence(value)
	case TypeObject:
		valid = isMapping(value)
	case TypeUUID:
		s, isStr := value.(string)
		valid = isStr && uuidPattern.MatchString(s)
	default:
		return failField(CodeSchemaValidation,
			fmt.Sprintf("unknown expected type %s for field %s", expected, fieldName),
			fieldName, nil)
	}
	if !valid {
		return failField(CodeSchemaValidation,
			fmt.Sprintf("field %s must be of type %s", fieldName, expected),
			fieldName, map[string]any{"expected_type": string(expected)})
	}
	return ok()
}

func isSequence(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

func isMapping(v any) bool {
	return reflect.TypeOf(v).Kind() == reflect.Map
}
