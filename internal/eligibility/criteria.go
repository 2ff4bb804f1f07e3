package eligibility

// Category is one of the four clinical programs a diagnosis can qualify a
// patient for.
type Category string

const (
	CategoryCOPD Category = "COPD" // chronic obstructive pulmonary disease
	CategoryARF  Category = "ARF"  // acute respiratory failure
	CategoryNMD  Category = "NMD"  // neuromuscular disease
	CategoryTRD  Category = "TRD"  // thoracic restrictive disease
)

// Categories lists every qualification category in a fixed order.
var Categories = []Category{CategoryCOPD, CategoryARF, CategoryNMD, CategoryTRD}

// MatchMode selects how a criterion's code is compared against a diagnosis.
type MatchMode string

const (
	// MatchExact requires a case-sensitive exact string match.
	MatchExact MatchMode = "exact"
	// MatchPrefix matches any code beginning with the criterion's code.
	MatchPrefix MatchMode = "prefix"
)

// QualificationCriterion is one reference-data rule: an ICD-10 code (exact or
// prefix) that qualifies or disqualifies a patient for one category. Loaded
// at startup from the reference store, never mutated by the domain.
type QualificationCriterion struct {
	ICD10Code         string    `json:"icd10_code" bson:"icd10_code"`
	QualificationType Category  `json:"qualification_type" bson:"qualification_type"`
	MatchMode         MatchMode `json:"match_mode" bson:"match_mode"`
	IsQualifying      bool      `json:"is_qualifying" bson:"is_qualifying"`
	Description       string    `json:"description" bson:"description"`
}

// ClinicalQualifications is the derived outcome of an assessment: four
// independent flags, one per program. It is a pure function of the diagnosis
// code set and the active rule table.
type ClinicalQualifications struct {
	COPD bool `json:"copd"`
	ARF  bool `json:"arf"`
	NMD  bool `json:"nmd"`
	TRD  bool `json:"trd"`
}

// Eligible reports overall NIV eligibility: any single flag qualifies.
func (q ClinicalQualifications) Eligible() bool {
	return q.COPD || q.ARF || q.NMD || q.TRD
}

func (q ClinicalQualifications) has(c Category) bool {
	switch c {
	case CategoryCOPD:
		return q.COPD
	case CategoryARF:
		return q.ARF
	case CategoryNMD:
		return q.NMD
	case CategoryTRD:
		return q.TRD
	}
	return false
}

func (q *ClinicalQualifications) set(c Category) {
	switch c {
	case CategoryCOPD:
		q.COPD = true
	case CategoryARF:
		q.ARF = true
	case CategoryNMD:
		q.NMD = true
	case CategoryTRD:
		q.TRD = true
	}
}

// DefaultCriteria is the canonical rule table. The COPD family is covered by
// a J44 prefix rule alongside the exact entries the clinical team signed off
// on, so both rule styles stay in one table instead of diverging per module.
func DefaultCriteria() []QualificationCriterion {
	criteria := []QualificationCriterion{
		{ICD10Code: "J44", QualificationType: CategoryCOPD, MatchMode: MatchPrefix, IsQualifying: true, Description: "Chronic obstructive pulmonary disease"},
		{ICD10Code: "J44.0", QualificationType: CategoryCOPD, MatchMode: MatchExact, IsQualifying: true, Description: "COPD with acute lower respiratory infection"},
		{ICD10Code: "J44.1", QualificationType: CategoryCOPD, MatchMode: MatchExact, IsQualifying: true, Description: "COPD with acute exacerbation"},
		{ICD10Code: "J44.9", QualificationType: CategoryCOPD, MatchMode: MatchExact, IsQualifying: true, Description: "COPD, unspecified"},
	}

	arfCodes := map[string]string{
		"J96.00": "Acute respiratory failure, unspecified",
		"J96.01": "Acute respiratory failure with hypoxia",
		"J96.02": "Acute respiratory failure with hypercapnia",
		"J96.10": "Chronic respiratory failure, unspecified",
		"J96.11": "Chronic respiratory failure with hypoxia",
		"J96.12": "Chronic respiratory failure with hypercapnia",
		"J96.20": "Acute and chronic respiratory failure, unspecified",
		"J96.21": "Acute and chronic respiratory failure with hypoxia",
		"J96.22": "Acute and chronic respiratory failure with hypercapnia",
		"J96.90": "Respiratory failure, unspecified",
		"J96.91": "Respiratory failure with hypoxia",
		"J96.92": "Respiratory failure with hypercapnia",
	}
	for code, desc := range arfCodes {
		criteria = append(criteria, QualificationCriterion{
			ICD10Code: code, QualificationType: CategoryARF, MatchMode: MatchExact, IsQualifying: true, Description: desc,
		})
	}

	nmdCodes := map[string]string{
		"G12.0":  "Infantile spinal muscular atrophy, type I",
		"G12.20": "Motor neuron disease, unspecified",
		"G12.21": "Amyotrophic lateral sclerosis",
		"G14":    "Postpolio syndrome",
		"G70.00": "Myasthenia gravis without acute exacerbation",
		"G70.01": "Myasthenia gravis with acute exacerbation",
		"G71.0":  "Muscular dystrophy",
		"G71.11": "Myotonic muscular dystrophy",
	}
	for code, desc := range nmdCodes {
		criteria = append(criteria, QualificationCriterion{
			ICD10Code: code, QualificationType: CategoryNMD, MatchMode: MatchExact, IsQualifying: true, Description: desc,
		})
	}

	trdCodes := map[string]string{
		"M40.204": "Unspecified kyphosis, thoracic region",
		"M41.9":   "Scoliosis, unspecified",
		"M95.4":   "Acquired deformity of chest and rib",
		"Q67.6":   "Pectus excavatum",
		"Q76.7":   "Congenital malformation of sternum",
	}
	for code, desc := range trdCodes {
		criteria = append(criteria, QualificationCriterion{
			ICD10Code: code, QualificationType: CategoryTRD, MatchMode: MatchExact, IsQualifying: true, Description: desc,
		})
	}

	return criteria
}
