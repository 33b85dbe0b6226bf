// Package biz 提供 FAQ 问答服务的业务逻辑层。
//
// 该包将问答流程拆分为以下组件：
//   - Chunker: 按字符窗口切分文档，尽量在句子边界处断开
//   - AnswerCache: 以规范化问题为键缓存答案，任何故障都降级为未命中
//   - RetrievalStore: 语义检索与连接健康状态，带有限次数的指数退避重连
//   - AnswerGenerator: 组装提示词并以统一的重试策略调用当前生成供应商
//   - FAQService: 组合以上组件，提供端到端的问答流程
package biz
