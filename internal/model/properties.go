package model

// Property ids touched by the genealogical bots.
const (
	PIDDateOfBirth             = "P569"
	PIDDateOfDeath             = "P570"
	PIDDateOfBaptism           = "P1636"
	PIDDateOfBurialOrCremation = "P4602"

	PIDPlaceOfBirth = "P19"
	PIDPlaceOfDeath = "P20"
	PIDSexOrGender  = "P21"
	PIDFather       = "P22"
	PIDMother       = "P25"
	PIDSpouse       = "P26"
	PIDChild        = "P40"
	PIDOccupation   = "P106"
	PIDResidence    = "P551"
	PIDWorkLocation = "P937"
	PIDMemberOf     = "P463"
	PIDReligion     = "P140"
	PIDGenre        = "P136"

	PIDStartTime             = "P580"
	PIDEndTime               = "P582"
	PIDPointInTime           = "P585"
	PIDEarliestDate          = "P1319"
	PIDLatestDate            = "P1326"
	PIDSourcingCircumstances = "P1480"
	PIDNatureOfStatement     = "P5102"
	PIDReasonForPreferred    = "P7452"
	PIDReasonForDeprecation  = "P2241"
	PIDSubjectNamedAs        = "P1810"
	PIDVolume                = "P478"
	PIDPages                 = "P304"
	PIDURL                   = "P2699"
	PIDInstanceOf            = "P31"

	PIDStatedIn                = "P248"
	PIDBasedOnHeuristic        = "P887"
	PIDRetrieved               = "P813"
	PIDReferenceURL            = "P854"
	PIDImportedFromWikimedia   = "P143"
	PIDWikimediaImportURL      = "P4656"
	PIDBasedOn                 = "P144"
	PIDVIAFID                  = "P214"
	PIDEcarticoPersonID        = "P2915"
	PIDGenealogicsPersonID     = "P1819"
	PIDWikiTreePersonID        = "P2949"
	PIDFindAGraveMemorialID    = "P535"
)

// Item ids used as qualifier or reference targets.
const (
	QIDCirca            = "Q5727902"
	QIDPossibly         = "Q30230067"
	QIDMostPreciseValue = "Q71536040"
	QIDBestReferenced   = "Q98386534"
	QIDBasedOnHeuristic = "Q110290992"

	// Proxy-event markers attached when a church record date stands in for an
	// unknown vital date.
	QIDBaptismAsBirthDate = "Q109638389"
	QIDBurialAsDeathDate  = "Q109638394"

	QIDMale   = "Q6581097"
	QIDFemale = "Q6581072"

	QIDEcartico    = "Q24576430"
	QIDGenealogics = "Q19847326"
	QIDWikiTree    = "Q1074931"
	QIDVIAF        = "Q54919"
)

// SortPIDs orders property ids numerically (P9 before P569 before P4602).
func SortPIDs(pids []string) []string {
	out := make([]string, len(pids))
	copy(out, pids)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && pidNum(out[j]) < pidNum(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func pidNum(pid string) int {
	n := 0
	for _, r := range pid[1:] {
		if r < '0' || r > '9' {
			return 1 << 30
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// IsQID reports whether s has the Q\d+ item-id shape.
func IsQID(s string) bool {
	if len(s) < 2 || s[0] != 'Q' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsPID reports whether s has the P\d+ property-id shape.
func IsPID(s string) bool {
	if len(s) < 2 || s[0] != 'P' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
