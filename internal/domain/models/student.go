// internal/domain/models/student.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is a roster entry imported by the organization.
//
// Survey answers and the personality profile are filled in by the student
// after claiming the account; both are optional and the matching engine
// degrades gracefully when they are absent. Organization affiliation is
// immutable after import.
type Student struct {
	ID             primitive.ObjectID `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	FullName       string             `bson:"full_name" json:"full_name"`
	FullNameCI     string             `bson:"full_name_ci" json:"full_name_ci"`

	// Claimed is set once the student has signed in and taken ownership
	// of the imported roster entry.
	Claimed bool `bson:"claimed" json:"claimed"`

	// PreferredRoomSizes is the set of room sizes the student is willing
	// to live in. Empty means no preference.
	PreferredRoomSizes []int `bson:"preferred_room_sizes,omitempty" json:"preferred_room_sizes,omitempty"`

	// SurveyAnswers maps lifestyle trait keys (e.g. "sleep_schedule") to
	// the student's chosen values. Unknown keys are ignored by the scorer.
	SurveyAnswers map[string]string `bson:"survey_answers,omitempty" json:"survey_answers,omitempty"`

	Personality *PersonalityProfile `bson:"personality,omitempty" json:"personality,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// PersonalityProfile holds the five personality traits, each 0-100.
type PersonalityProfile struct {
	Openness          float64 `bson:"openness" json:"openness"`
	Conscientiousness float64 `bson:"conscientiousness" json:"conscientiousness"`
	Extraversion      float64 `bson:"extraversion" json:"extraversion"`
	Agreeableness     float64 `bson:"agreeableness" json:"agreeableness"`
	Neuroticism       float64 `bson:"neuroticism" json:"neuroticism"`
}
