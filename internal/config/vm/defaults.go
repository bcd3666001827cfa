package vm

const (
	// defaultInfraErrorPolicy 存储故障默认降级：缓存只是加速手段，不应阻断执行
	defaultInfraErrorPolicy = InfraPolicyDegrade

	// defaultModuleCacheEntries 每个引擎保留的已编译模块数
	defaultModuleCacheEntries = 256
)
