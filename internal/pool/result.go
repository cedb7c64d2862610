package pool

// ResultKind 安置结果类别
//
// 三态结果：容量耗尽和任务不归属本池都是正常结果值，不是错误。
type ResultKind string

const (
	// ResultProvisioned 已开通执行槽
	ResultProvisioned ResultKind = "provisioned"

	// ResultNoCapacity 有匹配镜像但所有主机都没有剩余容量
	ResultNoCapacity ResultKind = "no_capacity"

	// ResultNotApplicable 任务不归属本池（无标签限制或无候选镜像匹配）
	ResultNotApplicable ResultKind = "not_applicable"
)

// Result 单次安置的结果
//
// 每次安置调用产生一个新值，由调用方立即消费，不做持久化。
type Result struct {
	Kind  ResultKind
	Slave *Slave // 仅 ResultProvisioned 时非 nil
}

// Provisioned 构造开通成功结果
func Provisioned(s *Slave) Result {
	return Result{Kind: ResultProvisioned, Slave: s}
}

// NoCapacity 构造容量耗尽结果
func NoCapacity() Result {
	return Result{Kind: ResultNoCapacity}
}

// NotApplicable 构造不归属结果
func NotApplicable() Result {
	return Result{Kind: ResultNotApplicable}
}
