package services

import (
	"fmt"
	"strings"

	"starscreen/screening/internal/models"
)

// PromptBuilder assembles the system/user prompt pairs for the two inference
// call sites. Prompt text is deliberately kept in one place.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

const jobConfigSchemaExample = `
{
  "title": "Senior Backend Engineer",
  "seniority_level": "Senior",
  "role_summary": "Lead backend development for scalable microservices...",
  "core_responsibilities": [
    "Design and implement RESTful APIs",
    "Optimize database queries and schema design"
  ],
  "categories": [
    {
      "category_id": "backend_dev",
      "name": "Backend Development",
      "importance": 5,
      "description": "Core backend programming skills",
      "examples_of_evidence": [
        "Built RESTful APIs with Go",
        "Designed microservices architecture"
      ]
    }
  ],
  "desired_background_patterns": {
    "years_experience": "5+",
    "industries": ["SaaS", "FinTech"]
  },
  "education_preferences": {
    "required_degree": "Bachelor's in Computer Science or equivalent",
    "preferred_fields": ["Computer Science", "Software Engineering"],
    "certifications": ["AWS Certified", "Kubernetes"]
  }
}
`

// BuildJobConfigPrompt returns the system and user prompts that turn a job
// posting into a weighted scoring taxonomy.
func (p *PromptBuilder) BuildJobConfigPrompt(title, description string) (string, string) {
	system := fmt.Sprintf(`You are an expert Technical Recruiter and AI Architect.
Your goal is to analyze a job description and break it down into a structured
configuration for a resume-scoring algorithm.

IMPORTANT INSTRUCTIONS:
1. Create 4-8 distinct skill categories (e.g., 'Cloud Platforms', 'Backend Development', 'Database Management')
2. Assign an importance score (1-5) to each category where:
   - 5 = Critical/Must-have skill
   - 4 = Very important
   - 3 = Important
   - 2 = Nice to have
   - 1 = Bonus/Optional
3. For each category, provide 3-5 concrete examples of evidence that would demonstrate competence
4. Identify the seniority level (Entry, Mid, Senior, Staff, Principal, etc.)
5. Extract core responsibilities as a bulleted list
6. Identify desired background patterns (years of experience, specific industries, etc.)
7. Note education preferences (required degree, preferred fields, etc.)

Return ONLY valid JSON matching this exact structure:
%s`, jobConfigSchemaExample)

	user := fmt.Sprintf(`Analyze this job posting and generate a structured configuration:

JOB TITLE: %s

JOB DESCRIPTION:
%s

Generate the JSON configuration following the exact schema structure provided.`, title, description)

	return system, user
}

// BuildScoringPrompt returns the system and user prompts for grading one
// resume against a job's taxonomy. The model grades each category 0-100 and
// explains itself; it is never asked for an overall score, that arithmetic
// happens in code.
func (p *PromptBuilder) BuildScoringPrompt(config *models.JobConfig, resumeText string, wantContact bool) (string, string) {
	system := `You are an expert recruiter. Evaluate candidates objectively and thoroughly.
Grade the candidate against each listed category on a 0-100 scale using only
evidence found in the resume. Do not compute any overall or weighted score.`

	var b strings.Builder
	fmt.Fprintf(&b, "JOB: %s (%s)\n%s\n\n", config.Title, config.SeniorityLevel, config.RoleSummary)

	b.WriteString("SCORING CATEGORIES:\n")
	for _, cat := range config.Categories {
		fmt.Fprintf(&b, "- %s (importance %d/5): %s\n", cat.Name, cat.Importance, cat.Description)
		for _, ev := range cat.ExamplesOfEvidence {
			fmt.Fprintf(&b, "    evidence example: %s\n", ev)
		}
	}

	b.WriteString("\nFor every category above return an integer score (0-100) and a short reasoning.\n")
	b.WriteString("Also return an executive summary, a list of pros and a list of cons.\n")
	if wantContact {
		b.WriteString("If the resume states contact details, return them in the contact object; omit unknown fields.\n")
	}

	fmt.Fprintf(&b, "\nRESUME:\n%s\n", resumeText)

	return system, b.String()
}
