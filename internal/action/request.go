package action

// ValidateRequest runs the composite validation pass for one action request.
// The order is fixed and short-circuits on first failure:
//
//  1. tenant isolation — confirm which yacht's policy applies,
//  2. role permission — before revealing anything about the payload shape,
//  3. required fields.
//
// Field-type and per-action schema checks run at the router level once these
// stages pass. Success means the request is cleared for those later checks.
func ValidateRequest(actionName string, actionCtx Context, payload Payload, user UserContext, def Definition) Result {
	if res := ValidateYachtIsolation(actionCtx, user); !res.Valid {
		return res
	}
	if res := ValidateRolePermission(user, def.AllowedRoles, actionName); !res.Valid {
		return res
	}
	if res := ValidateRequiredFields(payload, def.RequiredFields, actionName); !res.Valid {
		return res
	}
	return okWith(map[string]any{"yacht_id": actionCtx.YachtID})
}
