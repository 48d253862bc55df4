// Package mysql 以 MySQL 持久化智能体会话记忆，启动时执行 deploy/migrations
// 中内嵌的 SQL 迁移。
package mysql
