package model

import "time"

// SourceKind records how a logo artifact came to exist.
type SourceKind string

const (
	SourceFetched     SourceKind = "fetched"
	SourceCached      SourceKind = "cached"
	SourcePlaceholder SourceKind = "placeholder"
)

// ResolvedDomain is the host a company's official site was found on.
type ResolvedDomain struct {
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain"`
}

// LogoArtifact is a logo file present in the session cache.
type LogoArtifact struct {
	CompanyName string     `json:"company_name"`
	FilePath    string     `json:"file_path"`
	BackupPath  string     `json:"backup_path,omitempty"`
	Extension   string     `json:"extension"`
	SourceKind  SourceKind `json:"source_kind"`
	Domain      string     `json:"domain,omitempty"`
}

// FailureRecord names a company whose logo could not be obtained.
type FailureRecord struct {
	CompanyName string `json:"company_name"`
	Reason      string `json:"reason"`
}

// Outcome is the tagged result of processing one company. Exactly one of
// Artifact and Failure describes the company; a failed company still
// carries its placeholder artifact when one could be written.
type Outcome struct {
	Company  Company        `json:"company"`
	Artifact *LogoArtifact  `json:"artifact,omitempty"`
	Failure  *FailureRecord `json:"failure,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Failed reports whether the outcome carries a failure record.
func (o Outcome) Failed() bool {
	return o.Failure != nil
}

// IndexEntry is the persisted record of a backup artifact, keyed by the
// normalized company name.
type IndexEntry struct {
	Key         string     `json:"key"`
	CompanyName string     `json:"company_name"`
	FileName    string     `json:"file_name"`
	SourceKind  SourceKind `json:"source_kind"`
	Domain      string     `json:"domain,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
