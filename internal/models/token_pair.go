package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе и ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API; проверяется
//     по подписи, без обращения к хранилищу;
//   - RefreshToken — долгоживущий JWT, привязанный к сессии; действителен,
//     только пока его хэш совпадает с сохранённым в строке сессии;
//   - AccessExpiresAt/RefreshExpiresAt — моменты истечения токенов (UTC).
type TokenPair struct {
	// AccessToken — JWT для авторизации запросов.
	AccessToken string
	// RefreshToken — JWT для выпуска новой пары.
	RefreshToken string
	// AccessExpiresAt — время истечения действия access-токена (UTC).
	AccessExpiresAt time.Time
	// RefreshExpiresAt — время истечения действия refresh-токена (UTC).
	RefreshExpiresAt time.Time
}
