package database

// Schema 与原有库保持一致：消息正文列名为 context / translated_context，
// 成员表的会话列为 conversations_id。
const (
	createMessages = `CREATE TABLE IF NOT EXISTS messages (
	id                 BIGINT PRIMARY KEY,
	author_id          BIGINT NOT NULL,
	conversation_id    BIGINT NOT NULL,
	context            TEXT   NOT NULL,
	translated_context TEXT   NOT NULL DEFAULT ''
)`
	createMessagesIndex = `CREATE INDEX IF NOT EXISTS messages_conversation_id_idx
	ON messages (conversation_id, id DESC)`
	createConversationUsers = `CREATE TABLE IF NOT EXISTS conversation_users (
	user_id          BIGINT NOT NULL,
	conversations_id BIGINT NOT NULL,
	PRIMARY KEY (conversations_id, user_id)
)`

	insertMessage = `INSERT INTO messages (id, author_id, conversation_id, context, translated_context)
VALUES ($1, $2, $3, $4, $5)`
	selectMembers = `SELECT user_id FROM conversation_users WHERE conversations_id = $1
ORDER BY user_id`
	insertMember  = `INSERT INTO conversation_users (user_id, conversations_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING`
)

var schema = []string{createMessages, createMessagesIndex, createConversationUsers}
