package popularity

import (
	"strings"

	"github.com/crosschart/crosschart/internal/models"
)

// ErrorKind is the failure taxonomy for popularity fetches. Classification
// drives logging and the circuit breaker, so it is computed for every failed
// job even when the failure is treated as acceptable.
type ErrorKind int

const (
	KindAuthentication ErrorKind = iota
	KindRateLimit
	KindParsing
	KindMissingData
	KindNetwork
	KindOther

	numKinds
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limit"
	case KindParsing:
		return "parsing"
	case KindMissingData:
		return "missing_data"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// Classify maps a fetch failure onto an [ErrorKind] by matching the error
// message against source-specific signatures.
func Classify(source models.Source, err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	msg := strings.ToLower(err.Error())

	switch source {
	case models.SourceYouTube:
		switch {
		case strings.Contains(msg, "quota exceeded"),
			strings.Contains(msg, "quotaexceeded"),
			strings.Contains(msg, "rate limit"):
			return KindRateLimit
		case strings.Contains(msg, "403") && (strings.Contains(msg, "forbidden") || strings.Contains(msg, "unauthorized")):
			return KindAuthentication
		case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
			return KindMissingData
		case strings.Contains(msg, "timeout"),
			strings.Contains(msg, "connection"),
			strings.Contains(msg, "network"):
			return KindNetwork
		case strings.Contains(msg, "parsing"),
			strings.Contains(msg, "json"),
			strings.Contains(msg, "decode"):
			return KindParsing
		}
	case models.SourceSpotify:
		switch {
		case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
			return KindRateLimit
		case strings.Contains(msg, "popularity not found"),
			strings.Contains(msg, "no popularity returned"):
			return KindMissingData
		case strings.Contains(msg, "non-numeric"),
			strings.Contains(msg, "error converting"),
			strings.Contains(msg, "json"),
			strings.Contains(msg, "decode"):
			return KindParsing
		case strings.Contains(msg, "timeout"),
			strings.Contains(msg, "connection"),
			strings.Contains(msg, "network"):
			return KindNetwork
		case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
			return KindAuthentication
		}
	}

	return KindOther
}
