// Package resumable реализует серверную половину протокола докачки файлов по чанкам:
// проверку метаданных чанка, хранение чанков на локальном диске, определение
// завершённости сессии, сборку файла в исходном порядке и очистку.
//
// Чанки лежат в TempDir по одному файлу на чанк: <sanitizedIdentifier>.<chunkNumber>.
// Последовательность "сохранить чанк → проверить завершённость → собрать" выполняется
// под блокировкой по идентификатору, поэтому сборка запускается не более одного раза на сессию.
package resumable
