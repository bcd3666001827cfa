// vmrunner 合约执行调度器命令行
//
// 按协议版本选择执行引擎，运行、预编译或检查 WebAssembly 合约，
// 并可作为管理HTTP服务常驻（指标、引擎查询、编译检查）。
package main

func main() {
	Execute()
}
