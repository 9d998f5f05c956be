package toolclient

// ToolSpec describes one registered remote tool: its name, the category
// it belongs to, and the argument names the SubQueryGenerator may bind.
// This is the typed registry that replaces reflection-based dispatch:
// the SubQueryGenerator and Plan validation both look tools up here by
// name instead of calling the tool server to discover shapes at runtime.
type ToolSpec struct {
	Name        string
	Category    string
	Description string
	Args        []string
}

// Category names, matching the three groups the tool server organizes
// its 19 registered tools into.
const (
	CategorySystem        = "system"
	CategoryPersonProfile = "person_profile"
	CategoryJobAnalysis   = "job_analysis"
)

// Catalog is the fixed set of tools the pipeline is allowed to call.
// Any tool name produced by an LLM call that is not a key here is
// dropped during Plan validation rather than forwarded to the server.
var Catalog = map[string]ToolSpec{
	"health_check": {
		Name: "health_check", Category: CategorySystem,
		Description: "Checks tool server liveness.",
	},
	"get_person_complete_profile": {
		Name: "get_person_complete_profile", Category: CategoryPersonProfile,
		Description: "Fetches the full profile document for a person ID.",
		Args:        []string{"person_id"},
	},
	"find_person_by_name": {
		Name: "find_person_by_name", Category: CategoryPersonProfile,
		Description: "Finds people whose name matches the given string.",
		Args:        []string{"name"},
	},
	"find_people_by_skill": {
		Name: "find_people_by_skill", Category: CategoryPersonProfile,
		Description: "Finds people who have a given skill.",
		Args:        []string{"skill"},
	},
	"find_people_by_company": {
		Name: "find_people_by_company", Category: CategoryPersonProfile,
		Description: "Finds people who work or have worked at a company.",
		Args:        []string{"company"},
	},
	"find_colleagues_at_company": {
		Name: "find_colleagues_at_company", Category: CategoryPersonProfile,
		Description: "Finds colleagues of a person at a given company.",
		Args:        []string{"person_id", "company"},
	},
	"find_people_by_institution": {
		Name: "find_people_by_institution", Category: CategoryPersonProfile,
		Description: "Finds people who attended a given institution.",
		Args:        []string{"institution"},
	},
	"find_people_by_location": {
		Name: "find_people_by_location", Category: CategoryPersonProfile,
		Description: "Finds people located in a given place.",
		Args:        []string{"location"},
	},
	"get_person_skills": {
		Name: "get_person_skills", Category: CategoryPersonProfile,
		Description: "Returns the skill list for a person ID.",
		Args:        []string{"person_id"},
	},
	"find_people_with_multiple_skills": {
		Name: "find_people_with_multiple_skills", Category: CategoryPersonProfile,
		Description: "Finds people who have all of the given skills.",
		Args:        []string{"skills"},
	},
	"get_person_colleagues": {
		Name: "get_person_colleagues", Category: CategoryPersonProfile,
		Description: "Returns known colleagues for a person ID.",
		Args:        []string{"person_id"},
	},
	"find_people_by_experience_level": {
		Name: "find_people_by_experience_level", Category: CategoryPersonProfile,
		Description: "Finds people at a given seniority/experience level.",
		Args:        []string{"experience_level"},
	},
	"get_company_employees": {
		Name: "get_company_employees", Category: CategoryPersonProfile,
		Description: "Lists known employees of a company.",
		Args:        []string{"company"},
	},
	"get_person_details": {
		Name: "get_person_details", Category: CategoryPersonProfile,
		Description: "Returns core identity details for a person ID.",
		Args:        []string{"person_id"},
	},
	"get_person_job_descriptions": {
		Name: "get_person_job_descriptions", Category: CategoryJobAnalysis,
		Description: "Returns job description text associated with a person ID.",
		Args:        []string{"person_id"},
	},
	"search_job_descriptions_by_keywords": {
		Name: "search_job_descriptions_by_keywords", Category: CategoryJobAnalysis,
		Description: "Finds people whose job descriptions mention the given keywords.",
		Args:        []string{"keywords"},
	},
	"find_technical_skills_in_descriptions": {
		Name: "find_technical_skills_in_descriptions", Category: CategoryJobAnalysis,
		Description: "Finds people whose job descriptions mention a technical skill.",
		Args:        []string{"skill"},
	},
	"find_leadership_indicators": {
		Name: "find_leadership_indicators", Category: CategoryJobAnalysis,
		Description: "Finds people whose job descriptions show leadership language.",
		Args:        []string{},
	},
	"find_domain_experts": {
		Name: "find_domain_experts", Category: CategoryJobAnalysis,
		Description: "Finds people whose job descriptions indicate deep expertise in a domain.",
		Args:        []string{"domain"},
	},
}

// Lookup returns the ToolSpec for name and whether it is registered.
func Lookup(name string) (ToolSpec, bool) {
	spec, ok := Catalog[name]
	return spec, ok
}

// Names returns every registered tool name.
func Names() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	return names
}
