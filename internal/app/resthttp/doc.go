// Package resthttp реализует HTTP-интерфейс докачки по чанкам поверх пакета resumable. Эндпоинты:
//   - GET /chunks — проверка, есть ли уже чанк (200 found / 204 not_found).
//   - POST /chunks — multipart-форма с полями resumable* и частью file; тело ответа — статус.
//   - GET /uploads/{identifier} — запись журнала о собранном файле.
//   - GET /uploads/{identifier}/content — собранный файл из ещё не удалённых чанков.
//   - DELETE /uploads/{identifier} — удаление всех чанков сессии.
//   - POST /admin/gc — ручной запуск сборщика брошенных сессий.
//   - GET /status, GET /health — проверки живости.
package resthttp
