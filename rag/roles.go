package rag

import "strings"

// Role selects the analytical persona the answer is written in.
type Role string

const (
	RoleDefault   Role = "default"
	RoleLegal     Role = "legal"
	RoleFinancial Role = "financial"
	RoleTravel    Role = "travel"
	RoleTechnical Role = "technical"
)

// rolePrompts are the persona preambles prepended to every generation.
var rolePrompts = map[Role]string{
	RoleDefault: `Act as a general expert analyzing the content objectively and comprehensively.
Focus on providing accurate, well-structured information based on the document content.`,

	RoleLegal: `Act as a legal consultant analyzing the content.
Focus on legal implications, regulatory requirements, and potential legal risks or considerations.
Use appropriate legal terminology while keeping the explanation accessible.
Highlight any compliance concerns or legal opportunities if present.`,

	RoleFinancial: `Act as a financial advisor analyzing the content.
Focus on financial implications, costs, benefits, ROI, and economic considerations.
Use appropriate financial terminology while keeping the explanation accessible.
Highlight investment opportunities, risks, and financial planning aspects if present.`,

	RoleTravel: `Act as a travel consultant analyzing the content.
Focus on travel logistics, attractions, practical advice, and trip planning considerations.
Provide concrete suggestions and useful details for travelers.
Highlight location-specific information, timing considerations, and travel tips if present.`,

	RoleTechnical: `Act as a technical expert analyzing the content.
Focus on technical details, implementation specifics, and architectural considerations.
Use appropriate technical terminology while keeping the explanation accessible.
Highlight technical requirements, challenges, and solution approaches if present.`,
}

// ResolveRole maps a requested role name onto the known role set. Unknown
// or empty names fall back to the default role; fellBack reports whether a
// non-empty request could not be honored.
func ResolveRole(requested string) (role Role, fellBack bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(requested)))
	if normalized == "" {
		return RoleDefault, false
	}
	if _, ok := rolePrompts[normalized]; ok {
		return normalized, false
	}
	return RoleDefault, true
}

// Roles lists the supported role names.
func Roles() []Role {
	return []Role{RoleDefault, RoleLegal, RoleFinancial, RoleTravel, RoleTechnical}
}
