// Package store 提供 FAQ 服务的后端适配层。
//
// RedisKV 为答案缓存提供键值存储，MilvusBackend 为检索存储提供向量检索，
// QueryLogRepo 基于 GORM 持久化问答记录。
package store
