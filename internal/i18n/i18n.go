// Package i18n holds the user-facing strings returned by the API.
package i18n

import "golang.org/x/text/language"

type Key string

const (
	Unauthorized       Key = "unauthorized"
	InvalidJSON        Key = "invalid_json"
	MessageRequired    Key = "message_required"
	CredentialsMissing Key = "credentials_required"
	UsernameTaken      Key = "username_taken"
	InvalidCredentials Key = "invalid_credentials"
	UserNotFound       Key = "user_not_found"
	TokenRequired      Key = "token_required"
	Internal           Key = "internal"
	StorageFailure     Key = "storage_failure"
	UpstreamFailure    Key = "upstream_failure"
	FallbackReply      Key = "fallback_reply"
	RouteNotFound      Key = "route_not_found"
	MethodNotAllowed   Key = "method_not_allowed"
	LogoutFailed       Key = "logout_failed"
)

var supported = []language.Tag{language.English, language.Russian}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[Key]string{
	language.English: {
		Unauthorized:       "Authentication required",
		InvalidJSON:        "Request body is not valid JSON",
		MessageRequired:    "Message is required",
		CredentialsMissing: "Username and password are required",
		UsernameTaken:      "A user with this name already exists",
		InvalidCredentials: "Invalid username or password",
		UserNotFound:       "User not found",
		TokenRequired:      "Access token is required",
		Internal:           "Something went wrong on the server. Please try again later.",
		StorageFailure:     "Could not save your conversation. Please try again later.",
		UpstreamFailure:    "Sorry, an error occurred while processing your request. Please try again later.",
		FallbackReply:      "This is a test response because no access token is configured.",
		RouteNotFound:      "Route not found",
		MethodNotAllowed:   "Method not allowed",
		LogoutFailed:       "Could not log out",
	},
	language.Russian: {
		Unauthorized:       "Необходима авторизация",
		InvalidJSON:        "Тело запроса не является корректным JSON",
		MessageRequired:    "Сообщение обязательно",
		CredentialsMissing: "Имя пользователя и пароль обязательны",
		UsernameTaken:      "Пользователь с таким именем уже существует",
		InvalidCredentials: "Неверное имя пользователя или пароль",
		UserNotFound:       "Пользователь не найден",
		TokenRequired:      "Access токен обязателен",
		Internal:           "Произошла ошибка на сервере. Попробуйте позже.",
		StorageFailure:     "Не удалось сохранить переписку. Попробуйте позже.",
		UpstreamFailure:    "Извините, произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте снова позже.",
		FallbackReply:      "Это тестовый ответ, так как access токен не настроен",
		RouteNotFound:      "Маршрут не найден",
		MethodNotAllowed:   "Метод не поддерживается",
		LogoutFailed:       "Ошибка при выходе из системы",
	},
}

// Match picks the best supported language for an Accept-Language header.
// English is used when nothing matches.
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

func Text(tag language.Tag, key Key) string {
	if msgs, ok := catalog[tag]; ok {
		if s, ok := msgs[key]; ok {
			return s
		}
	}
	return catalog[language.English][key]
}
