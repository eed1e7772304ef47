package services

import "errors"

// Pipeline failures. Locator and Fetcher errors clear the session's snapshot;
// chat failures are absorbed into the transcript and only reach callers as ErrChatBusy.
var (
	ErrCityNotFound       = errors.New("city not found")
	ErrPermissionDenied   = errors.New("location permission denied")
	ErrCityUndetermined   = errors.New("could not determine city for location")
	ErrWeatherFetchFailed = errors.New("weather fetch failed")
	ErrChatRequestFailed  = errors.New("chat request failed")

	ErrEmptyQuery = errors.New("empty query")
	ErrChatBusy   = errors.New("chat request already in flight")

	// ErrSupersededFetch is returned to the caller whose fetch finished after a newer one started
	ErrSupersededFetch = errors.New("fetch superseded by a newer request")
)

// ErrorKind is the user-visible classification of a pipeline failure
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindCityNotFound       ErrorKind = "city_not_found"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindCityUndetermined   ErrorKind = "city_undetermined"
	KindWeatherFetchFailed ErrorKind = "weather_fetch_failed"
	KindChatRequestFailed  ErrorKind = "chat_request_failed"
	KindEmptyQuery         ErrorKind = "empty_query"
	KindChatBusy           ErrorKind = "chat_busy"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrCityNotFound, KindCityNotFound},
	{ErrPermissionDenied, KindPermissionDenied},
	{ErrCityUndetermined, KindCityUndetermined},
	{ErrWeatherFetchFailed, KindWeatherFetchFailed},
	{ErrChatRequestFailed, KindChatRequestFailed},
	{ErrEmptyQuery, KindEmptyQuery},
	{ErrChatBusy, KindChatBusy},
}

// ErrorKindOf maps err to its kind. Unclassified errors count as fetch failures,
// since every other stage reports through a sentinel.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindWeatherFetchFailed
}
