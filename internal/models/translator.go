package models

// TranslatorType is the pool a translator belongs to. It maps 1:1 to JobType:
// paid jobs go to professionals, rws jobs to rws translators and unpaid jobs
// to volunteers. There is no fallback between pools.
type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// TranslatorLevel is a certification level held by a translator.
type TranslatorLevel string

const (
	LevelCertified         TranslatorLevel = "certified"
	LevelCertifiedLaw      TranslatorLevel = "certified_law"
	LevelCertifiedHealth   TranslatorLevel = "certified_health"
	LevelLayman            TranslatorLevel = "layman"
	LevelTranslationCourse TranslatorLevel = "translation_course"
)

// AllTranslatorLevels is the full known level set, accepted when a job has no
// certification requirement.
var AllTranslatorLevels = []TranslatorLevel{
	LevelCertified,
	LevelCertifiedLaw,
	LevelCertifiedHealth,
	LevelLayman,
	LevelTranslationCourse,
}

// TranslatorProfile carries the per-user matching attributes plus the contact
// data used for notification targeting. It is read-only to the booking core.
type TranslatorProfile struct {
	UserID         int64             `json:"user_id"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Phone          string            `json:"phone"`
	TranslatorType TranslatorType    `json:"translator_type"`
	Levels         []TranslatorLevel `json:"translator_levels"`
	Gender         Gender            `json:"gender,omitempty"`
	Languages      []int64           `json:"languages"`
	Town           string            `json:"town,omitempty"`

	// Notification opt-outs.
	NotGetNighttime    bool `json:"not_get_nighttime"`
	NotGetNotification bool `json:"not_get_notification"`
	NotGetEmergency    bool `json:"not_get_emergency"`
}

// SpeaksLanguage reports whether the profile lists the given language id.
func (p TranslatorProfile) SpeaksLanguage(languageID int64) bool {
	for _, id := range p.Languages {
		if id == languageID {
			return true
		}
	}
	return false
}

// HasLevel reports whether the profile holds any of the given levels.
func (p TranslatorProfile) HasLevel(levels []TranslatorLevel) bool {
	for _, want := range levels {
		for _, have := range p.Levels {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Customer is the requesting side of a job. Distinct from ActiveTranslator so
// the two roles are never carried in the same variable.
type Customer struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	ConsumerType string `json:"consumer_type"`
	CustomerType string `json:"customer_type"`
	Town         string `json:"city"`

	NotGetNighttime    bool `json:"not_get_nighttime"`
	NotGetNotification bool `json:"not_get_notification"`
}

// ActiveTranslator is the contact view of the translator currently bound to a
// job through its active assignment.
type ActiveTranslator struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`

	NotGetNighttime    bool `json:"not_get_nighttime"`
	NotGetNotification bool `json:"not_get_notification"`
}
