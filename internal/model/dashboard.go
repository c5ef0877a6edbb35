package model

// ScoreRun is one evaluation of a company for a year.
type ScoreRun struct {
	EvalYear  int     `json:"evalYear"`
	PCRCScore float64 `json:"pcrcScore"`
	RIScore   float64 `json:"riScore"`
	TAGScore  float64 `json:"tagScore"`
	MMSScore  float64 `json:"mmsScore"`
	RIMax     float64 `json:"riMax"`
	TAGMax    float64 `json:"tagMax"`
	MMSMax    float64 `json:"mmsMax"`
}

// Default sub-score maxima used when a run has no scoring config.
const (
	DefaultRIMax  = 40
	DefaultTAGMax = 30
	DefaultMMSMax = 30
)

// Denominator types, in selection priority order.
const (
	DenomRevenue    = "revenue"
	DenomProduction = "production"
	DenomOther      = "other"
)

// EmissionRecord is the reconciled emissions and denominator for one
// (company, year). Emission values are in tCO2e.
type EmissionRecord struct {
	Year           int      `json:"year"`
	S1Emissions    float64  `json:"s1Emissions"`
	S2Emissions    float64  `json:"s2Emissions"`
	TotalEmissions *float64 `json:"totalEmissions,omitempty"`
	DenomValue     float64  `json:"denomValue"`
	DenomType      string   `json:"denomType"`
}

// Intensity returns (S1+S2)/denominator multiplied by scale. It reports false
// when the record has no positive denominator.
func (r EmissionRecord) Intensity(scale float64) (float64, bool) {
	if r.DenomValue <= 0 {
		return 0, false
	}
	return (r.S1Emissions + r.S2Emissions) / r.DenomValue * scale, true
}

// Target is a company's emission reduction target.
type Target struct {
	Scope              string  `json:"scope"`
	TargetReductionPct float64 `json:"targetReductionPct"`
	BaseYear           int     `json:"baseYear"`
	TargetYear         int     `json:"targetYear"`
}

// Report is a sustainability disclosure.
type Report struct {
	ReportYear      int      `json:"reportYear"`
	PublicationDate string   `json:"publicationDate"`
	AssuranceOrg    *string  `json:"assuranceOrg"`
	Frameworks      []string `json:"frameworks"`
}

// IndustryData aggregates the companies of one industry.
type IndustryData struct {
	CompanyCount int       `json:"companyCount"`
	Scores       []float64 `json:"scores"`
	AvgIntensity float64   `json:"avgIntensity"`
	AvgPCRC      float64   `json:"avgPcrc"`
	Alpha        float64   `json:"alpha"`
}

// Evidence categories.
const (
	EvidenceEmission = "Emission"
	EvidenceTarget   = "Target"
	EvidenceMMS      = "MMS"
)

// Evidence statuses.
const (
	StatusVerified     = "verified"
	StatusSelfReported = "self-reported"
	StatusProxy        = "proxy"
	StatusPending      = "pending"
)

// EvidenceItem is an informational annotation backing a disclosed figure.
type EvidenceItem struct {
	Category      string   `json:"category"`
	Indicator     string   `json:"indicator"`
	Year          *int     `json:"year,omitempty"`
	EvidencePage  *string  `json:"evidencePage"`
	EvidenceNote  *string  `json:"evidenceNote"`
	Status        string   `json:"status,omitempty"`
	PointsAwarded *float64 `json:"pointsAwarded,omitempty"`
}

// Dashboard is the assembled response. Maps are keyed by company id, except
// IndustryData which is keyed by industry id.
type Dashboard struct {
	Companies     []Company                   `json:"companies"`
	ScoreRuns     map[string][]ScoreRun       `json:"scoreRuns"`
	Reports       map[string]Report           `json:"reports"`
	ReportHistory map[string][]Report         `json:"reportHistory,omitempty"`
	EmissionsData map[string][]EmissionRecord `json:"emissionsData"`
	Targets       map[string]Target           `json:"targets"`
	IndustryData  map[string]IndustryData     `json:"industryData"`
	EvidenceItems map[string][]EvidenceItem   `json:"evidenceItems,omitempty"`
}

// NewDashboard returns a Dashboard with every map allocated.
func NewDashboard() *Dashboard {
	return &Dashboard{
		Companies:     []Company{},
		ScoreRuns:     map[string][]ScoreRun{},
		Reports:       map[string]Report{},
		EmissionsData: map[string][]EmissionRecord{},
		Targets:       map[string]Target{},
		IndustryData:  map[string]IndustryData{},
	}
}
