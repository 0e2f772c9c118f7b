package models

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tripwise/transferroute/internal/transfer"
)

// ComposeRequest is the body of POST /v1/transfers:compose.
type ComposeRequest struct {
	Origin      PointRequest       `json:"origin"`
	Destination PointRequest       `json:"destination"`
	Timing      TimingRequest      `json:"timing"`
	Constraints ConstraintsRequest `json:"constraints"`
	Context     ContextRequest     `json:"context"`
}

// PointRequest is a transfer endpoint. Coordinates are required; a zero
// latitude is legal, hence the pointers.
type PointRequest struct {
	Name               string   `json:"name" validate:"max=200"`
	Lat                *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng                *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Type               string   `json:"type" validate:"omitempty,oneof=hotel airport station stop landmark address"`
	Facilities         []string `json:"facilities" validate:"max=20,dive,max=50"`
	Accessible         bool     `json:"accessible"`
	Platform           string   `json:"platform" validate:"max=50"`
	Terminal           string   `json:"terminal" validate:"max=50"`
	Gate               string   `json:"gate" validate:"max=50"`
	MinTransferMinutes int      `json:"minTransferMinutes" validate:"gte=0,lte=240"`
}

type TimingRequest struct {
	DepartureTime   *time.Time `json:"departureTime"`
	ArrivalDeadline *time.Time `json:"arrivalDeadline"`
	Flexibility     string     `json:"flexibility" validate:"omitempty,oneof=strict moderate flexible"`
}

type ConstraintsRequest struct {
	MaxWalkingMinutes int      `json:"maxWalkingMinutes" validate:"gte=0,lte=120"`
	AvoidModes        []string `json:"avoidModes" validate:"dive,oneof=walking metro bus train taxi rideshare ferry tram"`
	PreferModes       []string `json:"preferModes" validate:"dive,oneof=walking metro bus train taxi rideshare ferry tram"`
	MaxCost           *float64 `json:"maxCost" validate:"omitempty,gte=0"`
	RequireAccessible bool     `json:"requireAccessible"`
	Luggage           string   `json:"luggage" validate:"omitempty,oneof=none light heavy"`
}

// ContextRequest leaves timeOfDay and dayOfWeek optional. When absent they
// are taken from the departure time, or from the current time.
type ContextRequest struct {
	Purpose   string `json:"purpose" validate:"max=100"`
	TimeOfDay string `json:"timeOfDay" validate:"omitempty,oneof=early_morning morning afternoon evening night"`
	DayOfWeek string `json:"dayOfWeek" validate:"omitempty,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Season    string `json:"season" validate:"max=20"`
	Weather   string `json:"weather" validate:"omitempty,oneof=clear rain snow storm"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns one FieldError per failed rule, or nil.
func (r *ComposeRequest) Validate() []FieldError {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: err.Error(), Code: "invalid"}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must have at most " + fe.Param() + " characters or items"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

// ToTransferRequest converts a validated request. now supplies the time
// bucket when neither the context nor the departure time does.
func (r *ComposeRequest) ToTransferRequest(now time.Time) *transfer.TransferRequest {
	at := now
	if r.Timing.DepartureTime != nil {
		at = *r.Timing.DepartureTime
	}

	tod := transfer.TimeOfDay(r.Context.TimeOfDay)
	if tod == "" {
		tod = transfer.TimeOfDayAt(at)
	}
	day := r.Context.DayOfWeek
	if day == "" {
		day = transfer.DayOfWeekAt(at)
	}

	return &transfer.TransferRequest{
		Origin:      r.Origin.toPoint(),
		Destination: r.Destination.toPoint(),
		Timing: transfer.Timing{
			DepartureTime:   r.Timing.DepartureTime,
			ArrivalDeadline: r.Timing.ArrivalDeadline,
			Flexibility:     transfer.Flexibility(r.Timing.Flexibility),
		},
		Constraints: transfer.Constraints{
			MaxWalkingMinutes: r.Constraints.MaxWalkingMinutes,
			AvoidModes:        toModes(r.Constraints.AvoidModes),
			PreferModes:       toModes(r.Constraints.PreferModes),
			MaxCost:           r.Constraints.MaxCost,
			RequireAccessible: r.Constraints.RequireAccessible,
			Luggage:           transfer.LuggageLoad(r.Constraints.Luggage),
		},
		Context: transfer.TripContext{
			Purpose:   r.Context.Purpose,
			TimeOfDay: tod,
			DayOfWeek: day,
			Season:    r.Context.Season,
			Weather:   transfer.Weather(r.Context.Weather),
		},
	}
}

func (p PointRequest) toPoint() transfer.TransferPoint {
	var lat, lng float64
	if p.Lat != nil {
		lat = *p.Lat
	}
	if p.Lng != nil {
		lng = *p.Lng
	}
	return transfer.TransferPoint{
		Name:               p.Name,
		Lat:                lat,
		Lng:                lng,
		Type:               transfer.PointType(p.Type),
		Facilities:         p.Facilities,
		Accessible:         p.Accessible,
		Platform:           p.Platform,
		Terminal:           p.Terminal,
		Gate:               p.Gate,
		MinTransferMinutes: p.MinTransferMinutes,
	}
}

func toModes(in []string) []transfer.Mode {
	if len(in) == 0 {
		return nil
	}
	out := make([]transfer.Mode, len(in))
	for i, m := range in {
		out[i] = transfer.Mode(m)
	}
	return out
}
